// Package archive encrypts exported CSV files with age and uploads them to S3.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// EncryptedExt is appended to the name of encrypted files.
const EncryptedExt = ".age"

// ParseRecipients accepts age X25519 public keys ("age1...") separated by
// commas or whitespace.
func ParseRecipients(spec string) ([]age.Recipient, error) {
	spec = strings.ReplaceAll(spec, ",", "\n")
	recipients, err := age.ParseRecipients(strings.NewReader(spec))
	if err != nil {
		return nil, fmt.Errorf("parsing age recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, errors.New("no age recipients given")
	}
	return recipients, nil
}

// Encrypt reads plaintext from r and writes age ciphertext for recipients to w.
func Encrypt(w io.Writer, r io.Reader, recipients ...age.Recipient) error {
	encWriter, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w. identity is
// the content of an age identity file.
func Decrypt(w io.Writer, r io.Reader, identity string) error {
	identities, err := age.ParseIdentities(strings.NewReader(identity))
	if err != nil {
		return fmt.Errorf("parsing identity: %w", err)
	}
	decReader, err := age.Decrypt(r, identities...)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

// Seal encrypts data when recipientSpec is set and returns the file name to
// store it under. With an empty spec data and name pass through unchanged.
func Seal(name string, data []byte, recipientSpec string) (string, []byte, error) {
	if strings.TrimSpace(recipientSpec) == "" {
		return name, data, nil
	}
	recipients, err := ParseRecipients(recipientSpec)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := Encrypt(&buf, bytes.NewReader(data), recipients...); err != nil {
		return "", nil, err
	}
	return name + EncryptedExt, buf.Bytes(), nil
}
