package server

import (
	"context"
	"time"

	cws "github.com/coder/websocket"
)

// wsChannel adapts a coder/websocket.Conn to the jrpc2 channel.Channel
// interface. One wsChannel serves one WebSocket connection.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
	// writeTimeout bounds each Send when positive.
	writeTimeout time.Duration
}

func (c *wsChannel) Send(data []byte) error {
	ctx := c.ctx
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
