package certificate

import (
	"bytes"
	"crypto"
	_ "crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"campuscert/certerr"
)

// DefaultIssuer is used when no issuer name is given.
const DefaultIssuer = "Data Campus"

// IssuedAtLayout matches a UTC ISO-8601 timestamp with millisecond precision.
const IssuedAtLayout = "2006-01-02T15:04:05.000Z"

// Record is the canonical certificate. Field order is part of the hash and must not change.
type Record struct {
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
	CourseID     int    `json:"courseId"`
	CourseTitle  string `json:"courseTitle"`
	IssuerName   string `json:"issuerName"`
	IssuedTo     string `json:"issuedTo"`
	IssuedAt     string `json:"issuedAt"`
	ID           string `json:"id"`
}

// Build creates a new record for one issuance attempt.
func Build(studentName, studentEmail, walletAddress string, courseID int, courseTitle, issuerName string, now time.Time) Record {
	if issuerName == "" {
		issuerName = DefaultIssuer
	}
	now = now.UTC()
	return Record{
		StudentName:  studentName,
		StudentEmail: studentEmail,
		CourseID:     courseID,
		CourseTitle:  courseTitle,
		IssuerName:   issuerName,
		IssuedTo:     walletAddress,
		IssuedAt:     now.Format(IssuedAtLayout),
		ID:           fmt.Sprintf("CERT-%d-%d", courseID, now.UnixMilli()),
	}
}

// IssuedTime parses IssuedAt back into a time.
func (r Record) IssuedTime() (time.Time, error) {
	return time.Parse(IssuedAtLayout, r.IssuedAt)
}

// Canonical serializes v in struct field order, without HTML escaping or a trailing newline.
func Canonical(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Hash returns "0x" + hex(sha256(Canonical(r))).
func Hash(r Record) (string, error) {
	return HashWith(r, crypto.SHA256)
}

// HashWith hashes the canonical record with h. It fails with HashingUnavailable
// when h is not linked into the binary.
func HashWith(r Record, h crypto.Hash) (string, error) {
	const op = "certificate.Hash"
	if h == 0 || !h.Available() {
		return "", certerr.Newf(certerr.HashingUnavailable, op, "digest %d not available", uint(h))
	}
	data, err := Canonical(r)
	if err != nil {
		return "", certerr.New(certerr.HashingUnavailable, op, err)
	}
	d := h.New()
	d.Write(data)
	return "0x" + hex.EncodeToString(d.Sum(nil)), nil
}
