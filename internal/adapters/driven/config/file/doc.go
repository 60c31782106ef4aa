// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable synthesis prompts
//   - LoadTunables: validated core tunables read from a ConfigStore
package file
