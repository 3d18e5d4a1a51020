/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rowkit

import (
	"errors"
	"fmt"

	"github.com/tomoncle/rowkit/repository"
)

var (
	// ErrOperationFailed matches every *OperationFailedError.
	ErrOperationFailed = errors.New("database operation failed")

	ErrNotFound        = repository.ErrNotFound
	ErrMultipleResults = repository.ErrMultipleResults
)

// OperationFailedError reports a write that touched no row, or an insert
// that produced no key.
type OperationFailedError struct {
	Query string
	Input any
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("%s: %T", ErrOperationFailed.Error(), e.Input)
}

func (e *OperationFailedError) Is(target error) bool {
	return target == ErrOperationFailed
}
