// Copyright 2023 UMH Systems GmbH
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

package mqtt

import (
	"github.com/beeker1121/goque"
	"go.uber.org/zap"
)

// queueObject is one outbound message persisted in the disk queue. Messages
// survive broker outages and service restarts until they are acknowledged.
type queueObject struct {
	Topic   string
	Payload []byte
	Retain  bool
}

func setupQueue(queuePath string) (pq *goque.Queue, err error) {
	pq, err = goque.OpenQueue(queuePath)
	if err != nil {
		zap.S().Errorf("Error opening queue at %s: %s", queuePath, err)
		return
	}
	return
}

func closeQueue(pq *goque.Queue) (err error) {
	err = pq.Close()
	if err != nil {
		zap.S().Errorf("Error closing queue: %s", err)
		return
	}
	return
}
