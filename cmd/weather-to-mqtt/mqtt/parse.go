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
	"regexp"

	lru "github.com/hashicorp/golang-lru"
)

// WeatherTopicRegex matches <prefix>/<place>/<leaf>. The prefix may span
// multiple segments, every segment has to start with an alphanumeric rune,
// which keeps empty segments and $-rooted broker internals out.
var WeatherTopicRegex = `^([A-Za-z0-9][\w.-]*(?:/[A-Za-z0-9][\w.-]*)*)/([a-z0-9][a-z0-9-]*)/(forecast|current|daily|raw|status|stats)$`
var WeatherTopicCompiledRegex = regexp.MustCompile(WeatherTopicRegex)

func IsTopicValid(topic string) bool {
	return WeatherTopicCompiledRegex.MatchString(topic)
}

// TopicInfo is the decomposed form of one of our topics.
type TopicInfo struct {
	Prefix string
	Place  string
	Leaf   string
}

var topicLruCache, _ = lru.New(100)

// GetTopicInfoCached returns the topic information for the given topic.
// The topic information is cached in an LRU cache, so the regex runs once
// per distinct topic. Invalid topics return nil.
func GetTopicInfoCached(topic string) *TopicInfo {
	value, ok := topicLruCache.Get(topic)
	if ok {
		return value.(*TopicInfo)
	}
	info := getTopicInfo(topic)
	topicLruCache.Add(topic, info)
	return info
}

// getTopicInfo parses the topic directly.
// Use the cached version if possible (GetTopicInfoCached)
func getTopicInfo(topic string) *TopicInfo {
	submatch := WeatherTopicCompiledRegex.FindStringSubmatch(topic)
	if submatch == nil {
		return nil
	}

	info := &TopicInfo{
		Prefix: submatch[1],
		Place:  submatch[2],
		Leaf:   submatch[3],
	}

	// status and stats live under the reserved bridge segment, place data
	// everywhere else.
	bridgeLeaf := info.Leaf == "status" || info.Leaf == "stats"
	if (info.Place == "bridge") != bridgeLeaf {
		return nil
	}

	return info
}
