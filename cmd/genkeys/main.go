// Command genkeys generates an ECDSA P-256 keypair for token signing.
// The private key stays with the issuing service; every verifier gets
// only the public key.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	var privatePath, publicPath string

	fs := pflag.NewFlagSet("genkeys", pflag.ExitOnError)
	fs.StringVar(&privatePath, "private", "private.pem", "Output path for the private key")
	fs.StringVar(&publicPath, "public", "public.pem", "Output path for the public key")
	_ = fs.Parse(os.Args[1:])

	if err := run(privatePath, publicPath); err != nil {
		fmt.Printf("error while generating keypair: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("keypair written to %s and %s\n", privatePath, publicPath)
}

func run(privatePath string, publicPath string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	privateDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateDER})

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		return err
	}
	return os.WriteFile(publicPath, publicPEM, 0o644)
}
