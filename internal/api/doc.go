// Package api exposes deck management, due queues and review submission over
// HTTP/JSON. Handlers decode and validate requests, resolve the acting user,
// call the services and translate their errors into status codes and safe
// messages.
package api
