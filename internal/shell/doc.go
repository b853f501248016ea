// Package shell knows which shells ssh-agent-setup supports, which of them
// are usable on this host, and how to wire SSH_AUTH_SOCK into their startup
// files.
//
// # Catalogue
//
// Each supported shell has a fixed RC file and a one-line export snippet:
//   - bash: ~/.bash_profile
//   - zsh: ${ZDOTDIR:-~}/.zshenv
//   - fish: $XDG_CONFIG_HOME/fish/config.fish
//   - elvish: $XDG_CONFIG_HOME/elvish/rc.elv
//
// # Discovery
//
// A catalogue entry is enabled only when its binary is on PATH and that
// binary is declared in /etc/shells. Entries in /etc/shells are keyed by
// basename; when a shell is listed both in /bin and elsewhere, the other
// location wins.
//
// # RC File Patching
//
// Patch appends the snippet below an attribution comment. It never edits
// existing lines, never writes a second copy of the snippet, and backs off
// when some other line already mentions SSH_AUTH_SOCK. Running it again is a
// no-op.
package shell
