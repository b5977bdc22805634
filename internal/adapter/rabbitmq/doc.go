// Package rabbitmq is the AMQP bridge to the device's fused location
// provider. Requests are published to the geolocation exchange, samples
// arrive on the geolocation.samples fanout and capability checks are
// answered over a reply queue.
package rabbitmq
