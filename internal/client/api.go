package client

import (
	"context"

	"github.com/and161185/binqr/internal/convert"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/rpc"
	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

func idReq(id uuid.UUID) *structpb.Struct { return convert.Fields{}.UUID("id", id).Struct() }

// --- invites ---

// ValidateInvite checks a code; transport failures read as invalid, like on the server.
func (c *Client) ValidateInvite(ctx context.Context, code string) model.InviteValidation {
	out, err := c.rpc.Call(ctx, rpc.MethodValidateInvite, convert.Fields{}.Str("code", code).Struct())
	if err != nil {
		return model.InviteValidation{Message: "Error validating invite code"}
	}
	v, err := convert.ToInviteValidation(out)
	if err != nil {
		return model.InviteValidation{Message: "Error validating invite code"}
	}
	return v
}

func (c *Client) CreateInvite(ctx context.Context) (*model.Invite, error) {
	out, err := c.call(ctx, rpc.MethodCreateInvite, nil)
	if err != nil {
		return nil, err
	}
	return convert.ToInvite(out)
}

func (c *Client) ListInvites(ctx context.Context) ([]model.Invite, error) {
	out, err := c.call(ctx, rpc.MethodListInvites, nil)
	if err != nil {
		return nil, err
	}
	return convert.ToInvites(out)
}

func (c *Client) RevokeInvite(ctx context.Context, id uuid.UUID) (*model.Invite, error) {
	out, err := c.call(ctx, rpc.MethodRevokeInvite, idReq(id))
	if err != nil {
		return nil, err
	}
	return convert.ToInvite(out)
}

// --- locations ---

func (c *Client) ListLocations(ctx context.Context) ([]model.Location, error) {
	out, err := c.call(ctx, rpc.MethodListLocations, nil)
	if err != nil {
		return nil, err
	}
	return convert.ToLocations(out)
}

func (c *Client) CreateLocation(ctx context.Context, name, description string) (*model.Location, error) {
	out, err := c.call(ctx, rpc.MethodCreateLocation, convert.Fields{}.Str("name", name).Str("description", description).Struct())
	if err != nil {
		return nil, err
	}
	return convert.ToLocation(out)
}

func (c *Client) UpdateLocation(ctx context.Context, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error) {
	req := convert.LocationUpdate(upd)
	req.Fields["id"] = structpb.NewStringValue(id.String())
	out, err := c.call(ctx, rpc.MethodUpdateLocation, req)
	if err != nil {
		return nil, err
	}
	return convert.ToLocation(out)
}

func (c *Client) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	_, err := c.call(ctx, rpc.MethodDeleteLocation, idReq(id))
	return err
}

func (c *Client) CountLocationBoxes(ctx context.Context, id uuid.UUID) (int, error) {
	out, err := c.call(ctx, rpc.MethodCountLocationBoxes, idReq(id))
	if err != nil {
		return 0, err
	}
	r := convert.Read(out)
	return r.Int("count"), r.Err()
}

// --- boxes ---

func (c *Client) ListBoxes(ctx context.Context) ([]model.Box, error) {
	out, err := c.call(ctx, rpc.MethodListBoxes, nil)
	if err != nil {
		return nil, err
	}
	return convert.ToBoxes(out)
}

func (c *Client) GetBox(ctx context.Context, id uuid.UUID) (*model.Box, error) {
	out, err := c.call(ctx, rpc.MethodGetBox, idReq(id))
	if err != nil {
		return nil, err
	}
	return convert.ToBox(out)
}

// CreateBox stores a new box; the server assigns its id and QR payload.
func (c *Client) CreateBox(ctx context.Context, name, description string, locationID uuid.UUID, contents []string, imageURL, aiAnalysis string) (*model.Box, error) {
	req := convert.Fields{}.
		Str("name", name).
		Str("description", description).
		UUID("location_id", locationID).
		Strings("contents", contents).
		Str("image_url", imageURL).
		Str("ai_analysis", aiAnalysis).
		Struct()
	out, err := c.call(ctx, rpc.MethodCreateBox, req)
	if err != nil {
		return nil, err
	}
	return convert.ToBox(out)
}

func (c *Client) UpdateBox(ctx context.Context, id uuid.UUID, upd model.BoxUpdate) (*model.Box, error) {
	req := convert.BoxUpdate(upd)
	req.Fields["id"] = structpb.NewStringValue(id.String())
	out, err := c.call(ctx, rpc.MethodUpdateBox, req)
	if err != nil {
		return nil, err
	}
	return convert.ToBox(out)
}

func (c *Client) FindBoxByCode(ctx context.Context, payload string) (*model.Box, error) {
	out, err := c.call(ctx, rpc.MethodFindBoxByCode, convert.Fields{}.Str("payload", payload).Struct())
	if err != nil {
		return nil, err
	}
	return convert.ToBox(out)
}

func (c *Client) SearchBoxes(ctx context.Context, query string, locationID *uuid.UUID) ([]model.Box, error) {
	req := convert.Fields{}.Str("query", query)
	if locationID != nil {
		req.UUID("location_id", *locationID)
	}
	out, err := c.call(ctx, rpc.MethodSearchBoxes, req.Struct())
	if err != nil {
		return nil, err
	}
	return convert.ToBoxes(out)
}

func (c *Client) DeleteBox(ctx context.Context, id uuid.UUID) error {
	_, err := c.call(ctx, rpc.MethodDeleteBox, idReq(id))
	return err
}
