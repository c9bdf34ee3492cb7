package lava

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import (
	"errors"
	"fmt"
)

// Error kinds. These are sentinels: wrap with fmt.Errorf("...: %w", Err...)
// to attach the offending id/name, and compare with errors.Is.
var (
	// ErrConfig marks a malformed node config: duplicate var_id, missing
	// service owner, or an otherwise inconsistent Executable.
	ErrConfig = errors.New("config error")

	// ErrProtocol marks an unexpected token on any control, sync or
	// request channel. Fatal: the Controller tears down on ErrProtocol.
	ErrProtocol = errors.New("protocol error")

	// ErrNotStarted marks a Controller API called before start().
	ErrNotStarted = errors.New("controller not started")

	// ErrRunning marks a Controller API that is illegal while running.
	ErrRunning = errors.New("controller is running")

	// ErrDuplicateConnection marks a duplicate edge in the port graph.
	ErrDuplicateConnection = errors.New("duplicate port connection")

	// ErrReshape marks an incompatible reshape virtual-port transform.
	ErrReshape = errors.New("incompatible reshape")

	// ErrConcatShape marks an incompatible concat virtual-port transform.
	ErrConcatShape = errors.New("incompatible concat shape")

	// ErrVarNotShareable marks a reference port bound to a non-shareable Var.
	ErrVarNotShareable = errors.New("var is not shareable")

	// ErrAlias marks an alias target with the wrong shape/shareability,
	// or one that is not a strict sub-process Var.
	ErrAlias = errors.New("invalid alias")

	// ErrAliasCycle marks a cyclic alias chain detected by resolveAlias.
	ErrAliasCycle = errors.New("alias cycle")

	// ErrSpawn marks an actor that could not be launched.
	ErrSpawn = errors.New("actor spawn failed")

	// ErrUserCallback wraps an error returned from a user phase callback;
	// carried up as TERMINATED with this as the diagnostic kind. A panic
	// inside a callback is not recovered.
	ErrUserCallback = errors.New("user callback error")

	// ErrChannel marks a broken channel (EOF, closed mid-protocol). The
	// call that observes it returns it; no teardown is started.
	ErrChannel = errors.New("channel error")

	errEmptyName     = errors.New("name cannot be empty")
	errParentNotFound = errors.New("parent node not found")
	errNodeNotFound  = errors.New("node not found")
	errInvalidKind   = errors.New("invalid port kind")
)

// wrapf attaches context to a sentinel error kind without losing it
// from errors.Is/errors.As.
func wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}
