// Copyright 2026 The Chimney Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package acme

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
)

// buildCSR creates a DER-encoded certificate signing request for
// domains, signed by key.
func buildCSR(key *ecdsa.PrivateKey, domains []string) ([]byte, error) {
	var dnsNames []string
	for _, d := range domains {
		if d != "*" {
			dnsNames = append(dnsNames, d)
		}
	}

	template := &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: dnsNames[0]},
		DNSNames: dnsNames,
	}
	return x509.CreateCertificateRequest(rand.Reader, template, key)
}

// encodePEM bundles a DER certificate chain and private key into PEM
// blocks suitable for certstore.Store.Save.
func encodePEM(certDER [][]byte, key *ecdsa.PrivateKey) (certPEM, keyPEM []byte) {
	for _, der := range certDER {
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	}
	der, _ := x509.MarshalECPrivateKey(key)
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return certPEM, keyPEM
}
