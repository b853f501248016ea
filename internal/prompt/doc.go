// Package prompt holds the interactive parts of ssh-agent-setup: yes/no
// confirmations, reading key paths, and choosing which shells to configure.
//
// Shell selection goes through an external multi-select picker (fzf by
// default) when one is installed. Without a picker it falls back to a
// numbered listing read from the terminal, and without a terminal it gives
// up with ErrSelectionAborted.
package prompt
