// Package unit renders and installs the systemd user units.
//
// Two units are installed into the user's systemd directory:
//
//   - ssh-agent.service, a symlink to the shipped template, never edited
//   - ssh-add.service, generated from its template by replacing the
//     @SSH_ADD_KEYS@ line with one ExecStart= line per key
//
// The generated unit names private key paths, so it is written 0600.
package unit
