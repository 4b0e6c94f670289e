package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretKeyBytesLen = 32

// Print random hex secret suitable for SECRET_KEY
func main() {
	size := pflag.IntP("bytes", "n", defaultSecretKeyBytesLen, "Secret length in bytes")
	pflag.Parse()

	if *size < 16 {
		fmt.Fprintln(os.Stderr, "secret key must be at least 16 bytes")
		os.Exit(1)
	}

	b := make([]byte, *size)

	_, err := rand.Read(b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}
