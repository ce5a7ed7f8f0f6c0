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

import "fmt"

// Topic layout below the configured prefix. Place topics carry retained
// messages so late subscribers get the last forecast immediately, the
// bridge topics describe the service itself.
//
//	<prefix>/<place-slug>/forecast
//	<prefix>/<place-slug>/current
//	<prefix>/<place-slug>/daily
//	<prefix>/<place-slug>/raw
//	<prefix>/bridge/status
//	<prefix>/bridge/stats

func TopicForecast(prefix string, slug string) string {
	return fmt.Sprintf("%s/%s/forecast", prefix, slug)
}

func TopicCurrent(prefix string, slug string) string {
	return fmt.Sprintf("%s/%s/current", prefix, slug)
}

func TopicDaily(prefix string, slug string) string {
	return fmt.Sprintf("%s/%s/daily", prefix, slug)
}

func TopicRaw(prefix string, slug string) string {
	return fmt.Sprintf("%s/%s/raw", prefix, slug)
}

func TopicStatus(prefix string) string {
	return prefix + "/bridge/status"
}

func TopicStats(prefix string) string {
	return prefix + "/bridge/stats"
}
