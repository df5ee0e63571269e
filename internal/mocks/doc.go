// Package mocks provides hand-written test doubles for the service
// interfaces. Each mock has a function field per method, default return
// values used when the function is nil, and call tracking where tests need
// to inspect the arguments.
//
//	svc := &mocks.MockCardReviewService{
//	    SubmitReviewFn: func(ctx context.Context, s card_review.ReviewSubmission) (*domain.Card, error) {
//	        return nil, store.ErrVersionConflict
//	    },
//	}
package mocks
