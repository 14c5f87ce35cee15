package eip

import "fmt"

// SelectBackend returns the Backend named by the process-wide,
// startup-fixed selector.
func SelectBackend(name string) (Backend, error) {
	switch name {
	case "PYLOGIX":
		return NewPylogix(), nil
	case "CPPPO":
		return NewCPPPO(), nil
	case "MOCK", "":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown EIP backend %q", name)
	}
}
