package dispatch

import "github.com/mtbrandt/enipcore/internal/wire"

// SupportConfig enables or disables each ENIP command individually. A
// disabled command is treated as unrecognized for dispatch purposes (same
// InvalidCommand status an actually-unknown command code gets), letting an
// operator model a restricted adapter profile without touching code. All
// commands default enabled.
type SupportConfig struct {
	NOP               bool
	ListServices      bool
	ListIdentity      bool
	ListInterfaces    bool
	RegisterSession   bool
	UnRegisterSession bool
	SendRRData        bool
	SendUnitData      bool
}

// DefaultSupportConfig enables every command, matching an adapter with no
// restricted profile configured.
func DefaultSupportConfig() SupportConfig {
	return SupportConfig{
		NOP:               true,
		ListServices:      true,
		ListIdentity:      true,
		ListInterfaces:    true,
		RegisterSession:   true,
		UnRegisterSession: true,
		SendRRData:        true,
		SendUnitData:      true,
	}
}

// Enabled reports whether cmd is individually enabled in this profile.
func (c SupportConfig) Enabled(cmd wire.Command) bool {
	switch cmd {
	case wire.CommandNOP:
		return c.NOP
	case wire.CommandListServices:
		return c.ListServices
	case wire.CommandListIdentity:
		return c.ListIdentity
	case wire.CommandListInterfaces:
		return c.ListInterfaces
	case wire.CommandRegisterSession:
		return c.RegisterSession
	case wire.CommandUnRegisterSess:
		return c.UnRegisterSession
	case wire.CommandSendRRData:
		return c.SendRRData
	case wire.CommandSendUnitData:
		return c.SendUnitData
	default:
		return false
	}
}
