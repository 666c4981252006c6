// Command webeid-validate-demo is a throwaway example binary, not part of
// the validator's public surface (spec.md scopes CLI entry points out). It
// reads a Web eID auth token as JSON from stdin and a list of PEM-encoded
// trusted CAs from a file, and reports whether the token validates.
package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	webeid "github.com/web-eid/web-eid-authtoken-validation-go"
)

func readTrustedCAs(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var certs []*x509.Certificate
	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, err
			}
			certs = append(certs, cert)
		}
		data = rest
	}
	return certs, nil
}

func main() {
	origin := flag.String("origin", "", "site origin, e.g. https://example.com")
	caFile := flag.String("ca-file", "", "path to PEM file of trusted intermediate CAs")
	nonce := flag.String("nonce", "", "challenge nonce issued to the client")
	flag.Parse()

	if *origin == "" || *caFile == "" || *nonce == "" {
		log.Fatal("usage: webeid-validate-demo -origin=... -ca-file=... -nonce=... < token.json")
	}

	trustedCAs, err := readTrustedCAs(*caFile)
	if err != nil {
		log.Fatalf("reading trusted CAs: %s", err)
	}

	cfg, err := webeid.NewConfigurationBuilder(*origin, trustedCAs...).
		WithOCSPRequestTimeout(5 * time.Second).
		Build()
	if err != nil {
		log.Fatalf("building configuration: %s", err)
	}

	tokenJSON, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("reading token from stdin: %s", err)
	}

	cert, err := webeid.New(cfg).Validate(context.Background(), tokenJSON, []byte(*nonce))
	if err != nil {
		log.Fatalf("token validation failed: %s", err)
	}

	fmt.Printf("authenticated subject: %s\n", cert.Subject.String())
}
