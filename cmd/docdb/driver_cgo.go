//go:build cgo

package main

// The cgo SQLite driver, selected with --sqlite-driver sqlite3.
import _ "github.com/mattn/go-sqlite3"
