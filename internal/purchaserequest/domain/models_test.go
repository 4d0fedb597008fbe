package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	statuses := []Status{StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected}
	allowed := map[Transition]map[Status]Status{
		TransitionSubmit:  {StatusDraft: StatusSubmitted},
		TransitionReview:  {StatusSubmitted: StatusUnderReview},
		TransitionApprove: {StatusSubmitted: StatusApproved, StatusUnderReview: StatusApproved},
		TransitionReject:  {StatusSubmitted: StatusRejected, StatusUnderReview: StatusRejected},
	}

	for transition, targets := range allowed {
		for _, from := range statuses {
			t.Run(fmt.Sprintf("%s from %s", transition, from), func(t *testing.T) {
				next, ok := Next(from, transition)
				want, wantOK := targets[from]
				assert.Equal(t, wantOK, ok)
				assert.Equal(t, want, next)
			})
		}
	}
}

func TestNextUnknownTransition(t *testing.T) {
	_, ok := Next(StatusSubmitted, Transition("escalate"))
	assert.False(t, ok)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusUnderReview.Terminal())
}
