package ratelimit

import (
	"time"

	"github.com/saiset-co/sai-commerce/types"
)

// KeyPrefix is the rate-limit cache namespace; counters live under
// rl:{policy}:{clientKey}.
const KeyPrefix = "rl:"

// Policy is a fixed-window budget. The four instances below are statically
// defined and immutable at runtime.
type Policy struct {
	Name    string
	Window  time.Duration
	Max     int64
	Message string
}

var (
	PolicyAPI = Policy{
		Name:    "api",
		Window:  15 * time.Minute,
		Max:     100,
		Message: "Too many requests from this IP, please try again after 15 minutes",
	}
	PolicyAuth = Policy{
		Name:    "auth",
		Window:  15 * time.Minute,
		Max:     5,
		Message: "Too many login attempts, please try again after 15 minutes",
	}
	PolicySearch = Policy{
		Name:    "search",
		Window:  time.Minute,
		Max:     30,
		Message: "Too many search requests, please try again after a minute",
	}
	PolicyOrder = Policy{
		Name:    "order",
		Window:  time.Hour,
		Max:     10,
		Message: "Order creation limit reached, please try again later",
	}
)

func Policies() []Policy {
	return []Policy{PolicyAPI, PolicyAuth, PolicySearch, PolicyOrder}
}

func PolicyByName(name string) (Policy, error) {
	for _, p := range Policies() {
		if p.Name == name {
			return p, nil
		}
	}
	return Policy{}, types.Errorf(types.ErrPolicyUnknown, "%s", name)
}

// Key builds the window counter key for a client under this policy.
func (p Policy) Key(clientKey string) string {
	return KeyPrefix + p.Name + ":" + clientKey
}
