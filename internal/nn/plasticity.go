package nn

import "evonet/internal/rule"

// bufferSynapses computes next strengths from the activations committed by
// the previous step. Static synapses keep their strength.
func (n *Network) bufferSynapses() error {
	for _, s := range n.synapses {
		if s == nil {
			continue
		}
		if !s.Rule.Plastic() {
			s.buffer = s.Strength
			s.bufferRule = s.Rule
			continue
		}
		pre := n.neurons[s.Source].Activation
		post := n.neurons[s.Target].Activation
		next, nextRule := s.Rule.Update(pre, post, s.Strength)
		if !finite(next) {
			return &UnstableError{Element: "synapse", ID: int(s.ID), Value: next}
		}
		s.buffer = rule.ClipStrength(next, s.Lower, s.Upper)
		s.bufferRule = nextRule
	}
	return nil
}

func (n *Network) commitSynapses() {
	for _, s := range n.synapses {
		if s == nil {
			continue
		}
		s.Strength = s.buffer
		s.Rule = s.bufferRule
	}
}
