// Package core provides the workspace and file tools.
//
// A Workspace owns the working directory and the loaded-file cache. Every
// file read or written through it is cached; an optional FileWatcher evicts
// entries that change on disk.
//
// Tools:
//   - set_working_directory: Change the working directory
//   - list_loaded_files: Report the loaded-file cache
//   - read_file: Read file contents
//   - write_file: Write content to a file
//   - list_directory: List directory contents
//   - find_files: Find files by name regex
//   - generate_diff: Unified diff between two texts
package core
