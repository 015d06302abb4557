package server

import (
	"os"
)

func fileExists(filename string) bool {
	fi, err := os.Lstat(filename)
	return err == nil && !fi.IsDir()
}

func dirExists(dirname string) bool {
	fi, err := os.Lstat(dirname)
	return err == nil && fi.IsDir()
}
