package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sceneLabel = "scene"
)

var (
	sceneObjectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_object_count",
		Help: "The number of objects in a scene.",
	}, []string{sceneLabel})

	sceneFrameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_frame_duration",
		Help:    "The time to simulate a scene frame.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{sceneLabel})
)

func instrumentObjectCount(scene string, count int) {
	sceneObjectCount.
		With(prometheus.Labels{sceneLabel: scene}).
		Set(float64(count))
}

func instrumentFrameDuration(scene string, start time.Time) {
	sceneFrameDuration.
		With(prometheus.Labels{sceneLabel: scene}).
		Observe(time.Since(start).Seconds())
}
