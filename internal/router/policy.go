package router

import "github.com/mtbrandt/enipcore/internal/cip/protocol"

// PolicyAction is the outcome a matching PolicyRule applies.
type PolicyAction int

const (
	PolicyAllow PolicyAction = iota
	PolicyDeny
)

// PolicyRule matches a CIP request by service/class/instance/attribute,
// where a nil field matches any value. The first matching rule wins.
type PolicyRule struct {
	Service   *protocol.CIPServiceCode
	Class     *uint16
	Instance  *uint16
	Attribute *uint16
	Action    PolicyAction
	// Status is the CIP general status returned when Action is
	// PolicyDeny. Defaults to ServiceNotSupp (0x08) when zero.
	Status uint8
}

func (r PolicyRule) matches(req protocol.CIPRequest) bool {
	if r.Service != nil && *r.Service != req.Service {
		return false
	}
	if r.Class != nil && *r.Class != req.Path.Class {
		return false
	}
	if r.Instance != nil && *r.Instance != req.Path.Instance {
		return false
	}
	if r.Attribute != nil && *r.Attribute != req.Path.Attribute {
		return false
	}
	return true
}

// Policy is the CIP access policy evaluated before a request reaches the
// object registry: an ordered rule list plus a default action for anything
// no rule matches. A nil *Policy allows everything, matching a core with no
// configured policy.
type Policy struct {
	Rules   []PolicyRule
	Default PolicyAction
}

// evaluate reports whether req is allowed to proceed, and the status to
// reply with when it is not.
func (p *Policy) evaluate(req protocol.CIPRequest) (allow bool, status uint8) {
	if p == nil {
		return true, 0
	}
	for _, rule := range p.Rules {
		if rule.matches(req) {
			if rule.Action == PolicyDeny {
				return false, denyStatus(rule.Status)
			}
			return true, 0
		}
	}
	if p.Default == PolicyDeny {
		return false, protocol.CIPStatusServiceNotSupp
	}
	return true, 0
}

func denyStatus(status uint8) uint8 {
	if status == 0 {
		return protocol.CIPStatusServiceNotSupp
	}
	return status
}
