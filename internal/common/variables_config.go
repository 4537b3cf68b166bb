package common

// VariablesDirConfig locates the startup variable seed files. The loader
// reads .env, then variables.toml, then variables/*.toml from this
// directory; later sources override earlier ones and everything lands in
// the key/value store for {key} replacement.
type VariablesDirConfig struct {
	// Dir is the directory scanned for seed files. Default: "./"
	Dir string `toml:"dir"`
}
