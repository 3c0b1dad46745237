package main

import (
	"encoding/json"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"monitory/internal/config"
	"monitory/internal/domain"
)

// Publishes synthetic factory telemetry, with an occasional correlated
// excursion window so the labeler has faults to find.
func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg := config.New()

	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	equipment := []string{"equip-001", "equip-002", "equip-003"}

	for i := 0; i < 1000; i++ {
		equip := equipment[i%len(equipment)]
		excursion := i%97 == 0 // rare burst of simultaneous out-of-range readings

		for sensor, base := range map[string]float64{
			"temp":           70,
			"pressure":       30,
			"vibration":      1.2,
			"humid":          50,
			"active_power":   80000,
			"reactive_power": 40000,
		} {
			val := base + base*0.1*rng.NormFloat64()
			if excursion && (sensor == "temp" || sensor == "vibration") {
				val = base * 3
			}
			r := domain.SensorReading{
				EquipID:    equip,
				ZoneID:     "zone-A",
				SensorType: sensor,
				Val:        val,
				Time:       time.Now().UTC(),
			}
			payload, _ := json.Marshal(r)
			token := client.Publish("factory/readings", 0, false, payload)
			token.Wait()
		}
		time.Sleep(200 * time.Millisecond)
	}
	log.Info().Msg("simulation done")
}
