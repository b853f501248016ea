// Package service runs the ssh-agent-setup provisioning workflow.
//
// SetupService.Execute performs, in order: precondition checks, key
// validation, loader unit generation and agent unit linking, shell
// discovery and selection, RC file resolution and patching, and finally
// systemd activation and an agent probe. Every collaborator is injected so
// the workflow can be exercised without touching the host.
package service
