// Copyright 2026 Zein Alasali
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

package core

import (
	"strconv"
	"strings"
)

// canonicalFields is the fixed rendering order for CanonicalText. The order
// must never change for deployed data: embeddings and content hashes are
// derived from it, and a reorder would silently invalidate every stored hash.
var canonicalFields = []struct {
	label string
	value func(*EntitySnapshot) string
}{
	{"name", func(s *EntitySnapshot) string { return s.Name }},
	{"description", func(s *EntitySnapshot) string { return s.Description }},
	{"status", func(s *EntitySnapshot) string { return s.Status }},
	{"project", func(s *EntitySnapshot) string { return s.ProjectName }},
	{"category", func(s *EntitySnapshot) string { return s.Category }},
	{"amount", func(s *EntitySnapshot) string { return formatMoney(s.Amount, s.Currency) }},
	{"quantity", func(s *EntitySnapshot) string { return formatQuantity(s.Quantity, s.Unit) }},
	{"notes", func(s *EntitySnapshot) string { return s.Notes }},
}

// CanonicalText renders a snapshot as the deterministic text blob used both
// for embedding and for content hashing. Fields appear in a fixed order and
// missing fields render as empty values rather than being omitted, so the
// canonical form of two snapshots is always line-by-line comparable.
//
// Identical snapshot attributes produce byte-identical output.
func CanonicalText(s *EntitySnapshot) string {
	var b strings.Builder
	b.WriteString("type: ")
	b.WriteString(s.Key.Type.String())
	b.WriteByte('\n')
	for _, f := range canonicalFields {
		b.WriteString(f.label)
		b.WriteString(": ")
		b.WriteString(f.value(s))
		b.WriteByte('\n')
	}
	return b.String()
}

// ContentHash returns the BLAKE2b hash of the snapshot's canonical text.
// The synchronizer compares it against the stored EmbeddingRecord to decide
// whether a re-embedding is needed.
func ContentHash(s *EntitySnapshot) ID {
	return IDFromContent(CanonicalText(s))
}

// Summary renders a single human-readable line for context bundles.
// Deterministic for a given snapshot; empty fields are dropped here (unlike
// CanonicalText) because the summary is for the reasoning model, not hashing.
func (s *EntitySnapshot) Summary() string {
	parts := make([]string, 0, 6)
	name := s.Name
	if name == "" {
		name = "(unnamed)"
	}
	parts = append(parts, s.Key.Type.String()+" "+strconv.FormatUint(uint64(s.Key.EntityID), 10)+" "+strconv.Quote(name))
	if s.ProjectName != "" {
		parts = append(parts, "project "+strconv.Quote(s.ProjectName))
	}
	if s.Status != "" {
		parts = append(parts, "status "+s.Status)
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if v := formatMoney(s.Amount, s.Currency); v != "" {
		parts = append(parts, "amount "+v)
	}
	if v := formatQuantity(s.Quantity, s.Unit); v != "" {
		parts = append(parts, "quantity "+v)
	}
	if s.Notes != "" {
		parts = append(parts, s.Notes)
	}
	return strings.Join(parts, "; ")
}

// formatMoney renders an amount with its currency, or empty when the amount
// is unset. Zero is treated as unset: snapshot fields are optional and the
// business subsystem never emits zero-amount records.
func formatMoney(amount float64, currency string) string {
	if amount == 0 {
		return ""
	}
	v := strconv.FormatFloat(amount, 'f', -1, 64)
	if currency == "" {
		return v
	}
	return v + " " + currency
}

func formatQuantity(quantity float64, unit string) string {
	if quantity == 0 {
		return ""
	}
	v := strconv.FormatFloat(quantity, 'f', -1, 64)
	if unit == "" {
		return v
	}
	return v + " " + unit
}
