// cmd/sensor-sim/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sensorSimulator "github.com/LeonardoBeccarini/sprayer_project/internal/sensor-simulator"
	controller "github.com/LeonardoBeccarini/sprayer_project/internal/services/spray-controller"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/sprayer"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq"
)

func main() {
	// define flags
	stationID := flag.String("station-id", "station1", "field station identifier")
	sprayerID := flag.String("sprayer-id", "sprayer-1", "sprayer this station follows")
	clientID := flag.String("client-id", "sensorPublisher1", "MQTT client ID")
	host := flag.String("host", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	seed := flag.Float64("soil-moisture", 55, "initial soil moisture (%)")
	dry := flag.Float64("dry-per-min", 0.05, "soil moisture lost per minute while idle (%)")
	cmdTopic := flag.String("command-topic", "event/SprayCommand/{device}", "spray command topic template")
	sprayerAddr := flag.String("sprayer-addr", "", "sprayer gRPC address; when set, over-watering triggers a STOP")
	flag.Parse()

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     *host,
		Port:     *port,
		User:     "guest",
		Password: "guest",
		ClientID: *clientID,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
	if err != nil {
		log.Fatal(err)
	}

	publisher := rabbitmq.NewPublisher(client, "sensor/data/"+*stationID)
	consumer := rabbitmq.NewConsumer(client, sprayer.CommandTopic(*cmdTopic, *sprayerID), nil)
	generator := sensorSimulator.NewDataGenerator(*seed, *dry)

	sim := sensorSimulator.NewSensorSimulator(consumer, publisher, generator, *stationID, *sprayerID, log.Default())
	if *sprayerAddr != "" {
		remote, err := controller.DialSprayer(ctx, *sprayerAddr)
		if err != nil {
			log.Fatal(err)
		}
		defer remote.Close()
		sim.SetGuard(remote)
	}
	sim.Start(ctx, *interval)
}
