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

// RunCondition selects what Controller.Run asks every Service to do.
type RunCondition interface {
	isRunCondition()
}

// StepRun advances exactly NumSteps time steps. If Blocking is true, Run
// does not return until every Service has acked all NumSteps steps; if
// false, Run returns immediately and a later Wait() performs the
// blocking collection (§4.1).
type StepRun struct {
	NumSteps uint32
	Blocking bool
}

func (StepRun) isRunCondition() {}

// ContinuousRun runs until a subsequent Pause or Stop. current_ts
// accounting is frozen at its last blocking value for the duration of a
// ContinuousRun and only resumes advancing on the next blocking
// StepRun/Wait — see DESIGN.md's resolution of the source's open
// question on continuous-mode time accounting.
type ContinuousRun struct{}

func (ContinuousRun) isRunCondition() {}
