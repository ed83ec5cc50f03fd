package main

import (
	"fmt"
	"net/http"

	"github.com/contentsquare/atomiccell/log"
)

func respondWith(rw http.ResponseWriter, err error, status int) {
	log.Debugf("responding with %d: %s", status, err)
	rw.WriteHeader(status)
	fmt.Fprintf(rw, "%s\n", err)
}
