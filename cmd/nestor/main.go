package main

import (
	// Crypto store database drivers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	Execute()
}
