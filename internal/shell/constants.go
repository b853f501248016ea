package shell

// EnvMarker is the variable every snippet exports. Any existing line that
// mentions it and is not the exact snippet is treated as a conflict.
const EnvMarker = "SSH_AUTH_SOCK"

// AttributionComment precedes every appended snippet.
const AttributionComment = "# Added by ssh-agent-setup"

// BackupSuffix is appended to an RC file path to name its backup copy.
const BackupSuffix = ".ssh-agent-setup-backup"

// ValidShellsFile is the host's list of permitted login shells.
const ValidShellsFile = "/etc/shells"

// MinimalBinDir is the early-boot binary directory. Valid-shells entries
// here lose to same-named entries elsewhere.
const MinimalBinDir = "/bin"
