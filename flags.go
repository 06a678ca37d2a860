package fvkit

import "io/fs"

// Permission bits for files and directories written during extraction.
const (
	PermOtherExecute fs.FileMode = 1 << iota // 0001
	PermOtherWrite                           // 0002
	PermOtherRead
	PermGroupExecute
	PermGroupWrite // 0020
	PermGroupRead
	PermUserExecute
	PermUserWrite
	PermUserRead // 0400
)

const PermOtherAll = PermOtherExecute | PermOtherWrite | PermOtherRead
const PermGroupAll = PermGroupExecute | PermGroupWrite | PermGroupRead
const PermUserAll = PermUserExecute | PermUserWrite | PermUserRead

// DefaultFileMode is rw-r--r--.
const DefaultFileMode = PermUserRead | PermUserWrite | PermGroupRead | PermOtherRead

// DefaultDirectoryMode is rwxr-xr-x.
const DefaultDirectoryMode = PermUserAll | PermGroupRead | PermGroupExecute | PermOtherRead | PermOtherExecute
