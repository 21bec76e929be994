// Command activity-consumer appends reservation events to the activity log
// file.  It reads from RabbitMQ, or from Kafka when EVENTS_BROKER=kafka.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/campus-marketplace/internal/config"
	"github.com/iliyamo/campus-marketplace/internal/logging"
	"github.com/iliyamo/campus-marketplace/internal/queue"
)

func main() {
	cfg := config.LoadConsumer()
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ev := cfg.Events
	c := queue.NewActivityConsumer(ev.RabbitMQURL, queue.ActivityQueue, ev.ActivityLog, log)

	var err error
	if ev.Broker == "kafka" {
		log.Info("activity consumer started", "broker", "kafka", "topic", ev.KafkaTopic, "file", ev.ActivityLog)
		err = c.RunKafka(ctx, queue.NewKafkaReader(ev.KafkaBrokers, ev.KafkaTopic, "activity-consumer"))
	} else {
		log.Info("activity consumer started", "broker", "amqp", "queue", queue.ActivityQueue, "file", ev.ActivityLog)
		err = c.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("activity consumer stopped", "err", err)
		os.Exit(1)
	}
	log.Info("activity consumer stopped")
}
