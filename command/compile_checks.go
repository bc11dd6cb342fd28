package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitPresentationMessage] = (*SubmitPresentationCommand)(nil)
	_ gocmd.Commander[SubmitRevocationMessage]   = (*SubmitRevocationCommand)(nil)
	_ gocmd.Commander[RegisterCredentialMessage] = (*RegisterCredentialCommand)(nil)
)
