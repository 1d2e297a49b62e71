//go:build !unix

package filehandle

import "os"

func fileOwner(_ os.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}
