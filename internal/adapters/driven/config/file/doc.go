// Package file stores pipeline configuration in a TOML file under the
// data directory. The file is the one the config watcher follows.
package file
