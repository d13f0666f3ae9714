package main

import (
	assetcache "github.com/chromy/assetcache/internal"
)

func main() {
	assetcache.Cmd()
}
