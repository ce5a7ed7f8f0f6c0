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

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/store"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

type brokerStatus interface {
	Connected() bool
}

type statsSource interface {
	BuildStats() *datamodel.StatsMessage
}

var restStore *store.Store
var restPublisher brokerStatus
var restWorker statsSource

// SetupRestAPI initializes the REST API and starts listening. The API only
// serves data the worker already holds in memory, so it stays read only and
// unauthenticated.
func SetupRestAPI(cfg *config.Config, st *store.Store, publisher brokerStatus, work statsSource) {
	restStore = st
	restPublisher = publisher
	restWorker = work

	gin.SetMode(gin.ReleaseMode)
	router := setupRouter()

	zap.S().Infof("REST API listening on %s", cfg.API.Address)
	err := router.Run(cfg.API.Address)
	if err != nil {
		panic(err)
	}
}

func setupRouter() *gin.Engine {
	router := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// A full forecast series is tens of kilobytes of JSON and compresses
	// well.
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Healthcheck
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/places", getPlacesHandler)
		v1.GET("/places/:place/forecast", getForecastHandler)
		v1.GET("/places/:place/current", getCurrentHandler)
		v1.GET("/places/:place/daily", getDailyHandler)
		v1.GET("/status", getStatusHandler)
	}

	return router
}

type placeRequest struct {
	Place string `uri:"place" binding:"required"`
}

type statusResponse struct {
	Status          string                  `json:"status"`
	BrokerConnected bool                    `json:"broker_connected"`
	Stats           *datamodel.StatsMessage `json:"stats"`
}

func getPlacesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, restStore.Places())
}

func getForecastHandler(c *gin.Context) {
	var request placeRequest
	if err := c.BindUri(&request); err != nil {
		handleInvalidInputError(c, err)
		return
	}

	forecast, ok := restStore.Forecast(request.Place)
	if !ok {
		handleUnknownPlace(c, request.Place)
		return
	}
	c.JSON(http.StatusOK, forecast)
}

func getCurrentHandler(c *gin.Context) {
	var request placeRequest
	if err := c.BindUri(&request); err != nil {
		handleInvalidInputError(c, err)
		return
	}

	current, ok := restStore.Current(request.Place)
	if !ok {
		handleUnknownPlace(c, request.Place)
		return
	}
	c.JSON(http.StatusOK, current)
}

func getDailyHandler(c *gin.Context) {
	var request placeRequest
	if err := c.BindUri(&request); err != nil {
		handleInvalidInputError(c, err)
		return
	}

	daily, ok := restStore.Daily(request.Place)
	if !ok {
		handleUnknownPlace(c, request.Place)
		return
	}
	c.JSON(http.StatusOK, daily)
}

func getStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Status:          datamodel.AvailabilityOnline,
		BrokerConnected: restPublisher.Connected(),
		Stats:           restWorker.BuildStats(),
	})
}

// handleUnknownPlace answers with a JSON body so a consumer can tell a
// missing place from a missing route. Places appear here once the first
// poll stored their data.
func handleUnknownPlace(c *gin.Context, place string) {
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown place %q", place)})
}

func handleInvalidInputError(c *gin.Context, err error) {
	zap.S().Warnf("Invalid request input: %s", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
