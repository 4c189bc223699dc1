package main

import (
	"context"
	"errors"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"rangefinder-go/services/bridge"
)

const brokerTimeout = 5 * time.Second

// deviceID is a stable per-host id that does not expose the raw machine id.
func deviceID() (string, error) {
	id, err := machineid.ProtectedID("rangefinder-sim")
	if err != nil {
		return "", err
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id, nil
}

type mqttLink struct {
	client paho.Client
}

func dialMQTT(id string) func(context.Context, bridge.Config) (bridge.Link, error) {
	return func(ctx context.Context, cfg bridge.Config) (bridge.Link, error) {
		opts := paho.NewClientOptions()
		opts.AddBroker(cfg.Broker).
			SetClientID("rangefinder-" + id).
			SetAutoReconnect(false).
			SetCleanSession(true)
		c := paho.NewClient(opts)
		tok := c.Connect()
		if !tok.WaitTimeout(brokerTimeout) {
			return nil, errors.New("mqtt: connect timeout")
		}
		if err := tok.Error(); err != nil {
			return nil, err
		}
		glog.Infof("mqtt: connected to %s", cfg.Broker)
		return &mqttLink{client: c}, nil
	}
}

func (l *mqttLink) Publish(topic string, payload []byte, retained bool) error {
	if !l.client.IsConnected() {
		return errors.New("mqtt: not connected")
	}
	tok := l.client.Publish(topic, 0, retained, payload)
	if !tok.WaitTimeout(brokerTimeout) {
		return errors.New("mqtt: publish timeout")
	}
	if glog.V(2) {
		glog.Infof("PUB %q", topic)
	}
	return tok.Error()
}

func (l *mqttLink) Close() error {
	l.client.Disconnect(250)
	return nil
}
