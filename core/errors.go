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

import "errors"

// Domain validation errors
var (
	// ErrInvalidSnapshot indicates an EntitySnapshot failed validation.
	ErrInvalidSnapshot = errors.New("invalid entity snapshot")

	// ErrInvalidEvent indicates an EntityChanged event failed validation.
	ErrInvalidEvent = errors.New("invalid change event")

	// ErrMissingOrg indicates an operation was attempted without an org scope.
	// This is a hard precondition failure, never degraded away.
	ErrMissingOrg = errors.New("org id is required")

	// ErrInvalidEntityType indicates an EntityType value outside the known set.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidChangeOp indicates a ChangeOp value outside the known set.
	ErrInvalidChangeOp = errors.New("invalid change op")

	// ErrMissingEntityID indicates a key without an entity id.
	ErrMissingEntityID = errors.New("entity id is required")

	// ErrMissingSnapshot indicates a create or update event without a snapshot.
	ErrMissingSnapshot = errors.New("snapshot required for create and update events")
)
