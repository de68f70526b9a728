package onebot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/poke-monitor/internal/boterr"
)

// Call sends an action request and waits for the matching echo response.
// Outbound calls share one token bucket.
func (c *Connector) Call(ctx context.Context, action string, params any) (Response, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return Response{}, fmt.Errorf("onebot action is required")
	}
	if !c.Connected() {
		return Response{}, boterr.ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("wait for action slot: %w", err)
	}

	echo := uuid.NewString()
	waiter := make(chan Response, 1)
	c.waitMu.Lock()
	c.waiters[echo] = waiter
	c.waitMu.Unlock()
	defer func() {
		c.waitMu.Lock()
		delete(c.waiters, echo)
		c.waitMu.Unlock()
	}()

	if err := c.write(apiRequest{Action: action, Params: params, Echo: echo}); err != nil {
		return Response{}, err
	}

	timer := time.NewTimer(c.cfg.CallTimeout)
	defer timer.Stop()
	select {
	case response := <-waiter:
		if !response.ok() {
			return response, fmt.Errorf("%w: %s retcode=%d: %s", boterr.ErrActionFailed, action, response.retCode(), response.failureText())
		}
		return response, nil
	case <-timer.C:
		return Response{}, fmt.Errorf("%w: %s", boterr.ErrActionTimeout, action)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (c *Connector) SendText(ctx context.Context, target Target, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.sendSegments(ctx, target, []segment{textSegment(text)})
}

// SendImage uploads the image inline as a base64 segment.
func (c *Connector) SendImage(ctx context.Context, target Target, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("image is empty")
	}
	return c.sendSegments(ctx, target, []segment{base64ImageSegment(base64.StdEncoding.EncodeToString(image))})
}

func (c *Connector) sendSegments(ctx context.Context, target Target, message []segment) error {
	if !target.Valid() {
		return boterr.ErrInvalidTarget
	}
	var err error
	if target.IsGroup() {
		_, err = c.Call(ctx, "send_group_msg", map[string]any{
			"group_id": target.GroupID,
			"message":  message,
		})
	} else {
		_, err = c.Call(ctx, "send_private_msg", map[string]any{
			"user_id": target.UserID,
			"message": message,
		})
	}
	return err
}

// Poke pokes userID inside the target chat.
func (c *Connector) Poke(ctx context.Context, target Target, userID int64) error {
	if userID <= 0 {
		return boterr.ErrInvalidTarget
	}
	params := map[string]any{"user_id": userID}
	if target.IsGroup() {
		params["group_id"] = target.GroupID
	}
	_, err := c.Call(ctx, c.cfg.PokeAction, params)
	return err
}

// DisplayName resolves the group card or nickname of userID.
func (c *Connector) DisplayName(ctx context.Context, target Target, userID int64) (string, error) {
	if userID <= 0 {
		return "", boterr.ErrInvalidTarget
	}
	var (
		response Response
		err      error
	)
	if target.IsGroup() {
		response, err = c.Call(ctx, "get_group_member_info", map[string]any{
			"group_id": target.GroupID,
			"user_id":  userID,
		})
	} else {
		response, err = c.Call(ctx, "get_stranger_info", map[string]any{
			"user_id": userID,
		})
	}
	if err != nil {
		return "", err
	}
	if len(response.Data) == 0 {
		return "", nil
	}
	var info memberInfo
	if err := json.Unmarshal(response.Data, &info); err != nil {
		return "", fmt.Errorf("decode member info: %w", err)
	}
	if name := strings.TrimSpace(info.Card); name != "" {
		return name, nil
	}
	return strings.TrimSpace(info.Nickname), nil
}
