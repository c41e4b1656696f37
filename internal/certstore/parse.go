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

package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/aosasona/chimney/internal/chimneyconfig"
)

// ParseCertEntry parses a cert.pem/key.pem pair into a CertEntry
// ready for use in a tls.Config's GetCertificate callback.
func ParseCertEntry(certPEM, keyPEM []byte, source chimneyconfig.CertSource) (*CertEntry, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate/key pair: %w", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing leaf certificate: %w", err)
	}
	cert.Leaf = leaf

	return &CertEntry{
		Certificate: &cert,
		NotBefore:   leaf.NotBefore,
		NotAfter:    leaf.NotAfter,
		Source:      source,
	}, nil
}
