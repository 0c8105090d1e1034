package reasoning

import "errors"

// ErrToTExhausted reports a beam search whose entire frontier failed or
// was pruned at some depth, leaving nothing to expand or answer with.
var ErrToTExhausted = errors.New("tree-of-thought beam exhausted")

// ErrSwarmAllAgentsFailed reports a swarm run in which no agent produced
// a conclusion. Single-agent failures are tolerated and do not raise it.
var ErrSwarmAllAgentsFailed = errors.New("all swarm agents failed")
