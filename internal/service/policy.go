package service

import (
	"sync/atomic"

	"academy/internal/policy"
)

// PolicyHolder shares the current lesson policy between services and the config watcher.
type PolicyHolder struct {
	p atomic.Pointer[policy.Policy]
}

func NewPolicyHolder(p *policy.Policy) *PolicyHolder {
	h := &PolicyHolder{}
	h.Set(p)
	return h
}

func (h *PolicyHolder) Get() *policy.Policy {
	return h.p.Load()
}

func (h *PolicyHolder) Set(p *policy.Policy) {
	if p == nil {
		p = policy.New(policy.DefaultConfig(), nil)
	}
	h.p.Store(p)
}
