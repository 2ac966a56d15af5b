// Package config locates and persists the three command layers and loads
// the process configuration.
//
// Layer files:
//
//	global     $XDG_CONFIG_HOME/quickcmd/settings.json
//	workspace  <workspace>/.quickcmd/settings.json
//	local      <folder>/.quickcmd/settings.local.json
//
// Each file is JSONC (comments and trailing commas are accepted via
// tidwall/jsonc). The layer lives under the "quickCommands.commands" key;
// FileStore reads it with gjson and rewrites only that key with sjson, so
// any other settings in the file survive a save.
//
// AppConfig is parsed from QUICKCMD_* variables with caarlos0/env after
// godotenv loads .env.
package config
