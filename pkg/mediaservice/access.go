package mediaservice

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

type accessPolicyDTO struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	DurationInMinutes number `json:"DurationInMinutes"`
	Permissions       int    `json:"Permissions"`
}

func (d accessPolicyDTO) policy() AccessPolicy {
	return AccessPolicy{
		ID:          d.ID,
		Name:        d.Name,
		Duration:    time.Duration(d.DurationInMinutes.Value * float64(time.Minute)),
		Permissions: AccessPermissions(d.Permissions),
	}
}

type locatorDTO struct {
	ID             string `json:"Id"`
	Type           int    `json:"Type"`
	Path           string `json:"Path"`
	AssetID        string `json:"AssetId"`
	AccessPolicyID string `json:"AccessPolicyId"`
}

func (d locatorDTO) locator() Locator {
	return Locator{
		ID:             d.ID,
		Type:           LocatorType(d.Type),
		Path:           d.Path,
		AssetID:        d.AssetID,
		AccessPolicyID: d.AccessPolicyID,
	}
}

type notificationEndPointDTO struct {
	ID              string `json:"Id"`
	Name            string `json:"Name"`
	EndPointAddress string `json:"EndPointAddress"`
	EndPointType    int    `json:"EndPointType"`
}

func (d notificationEndPointDTO) endPoint() NotificationEndPoint {
	return NotificationEndPoint{
		ID:      d.ID,
		Name:    d.Name,
		Address: d.EndPointAddress,
		Type:    NotificationEndPointType(d.EndPointType),
	}
}

type mediaProcessorDTO struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Version string `json:"Version"`
}

// SAS locators become valid this long before they are created.
const locatorBackdate = 5 * time.Minute

func (c *Client) FindAccessPolicy(ctx context.Context, name string) (AccessPolicy, error) {
	var dtos []accessPolicyDTO
	if err := c.list(ctx, "AccessPolicies", nameFilter(name), &dtos); err != nil {
		return AccessPolicy{}, fmt.Errorf("find access policy %q: %w", name, err)
	}
	if len(dtos) == 0 {
		return AccessPolicy{}, fmt.Errorf("find access policy %q: %w", name, ErrNotFound)
	}
	return dtos[0].policy(), nil
}

func (c *Client) CreateAccessPolicy(ctx context.Context, name string, duration time.Duration, perms AccessPermissions) (AccessPolicy, error) {
	body := map[string]any{
		"Name":              name,
		"DurationInMinutes": duration.Minutes(),
		"Permissions":       int(perms),
	}
	var out accessPolicyDTO
	if err := c.create(ctx, "AccessPolicies", body, &out); err != nil {
		return AccessPolicy{}, fmt.Errorf("create access policy %q: %w", name, err)
	}
	return out.policy(), nil
}

func (c *Client) DeleteAccessPolicy(ctx context.Context, id string) error {
	if err := c.remove(ctx, entityPath("AccessPolicies", id)); err != nil {
		return fmt.Errorf("delete access policy %s: %w", id, err)
	}
	return nil
}

func (c *Client) CreateLocator(ctx context.Context, typ LocatorType, assetID, policyID string) (Locator, error) {
	body := map[string]any{
		"AccessPolicyId": policyID,
		"AssetId":        assetID,
		"Type":           int(typ),
	}
	if typ == LocatorTypeSAS {
		body["StartTime"] = time.Now().UTC().Add(-locatorBackdate).Format(time.RFC3339)
	}
	var out locatorDTO
	if err := c.create(ctx, "Locators", body, &out); err != nil {
		return Locator{}, fmt.Errorf("create locator for asset %s: %w", assetID, err)
	}
	return out.locator(), nil
}

func (c *Client) DeleteLocator(ctx context.Context, id string) error {
	if err := c.remove(ctx, entityPath("Locators", id)); err != nil {
		return fmt.Errorf("delete locator %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListMediaProcessors(ctx context.Context, name string) ([]MediaProcessor, error) {
	var dtos []mediaProcessorDTO
	if err := c.list(ctx, "MediaProcessors", nameFilter(name), &dtos); err != nil {
		return nil, fmt.Errorf("list media processors %q: %w", name, err)
	}
	out := make([]MediaProcessor, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, MediaProcessor{ID: d.ID, Name: d.Name, Version: d.Version})
	}
	return out, nil
}

func (c *Client) FindNotificationEndPoint(ctx context.Context, name string) (NotificationEndPoint, error) {
	var dtos []notificationEndPointDTO
	if err := c.list(ctx, "NotificationEndPoints", nameFilter(name), &dtos); err != nil {
		return NotificationEndPoint{}, fmt.Errorf("find notification endpoint %q: %w", name, err)
	}
	if len(dtos) == 0 {
		return NotificationEndPoint{}, fmt.Errorf("find notification endpoint %q: %w", name, ErrNotFound)
	}
	return dtos[0].endPoint(), nil
}

func (c *Client) CreateNotificationEndPoint(ctx context.Context, spec NotificationEndPointSpec) (NotificationEndPoint, error) {
	body := map[string]any{
		"Name":            spec.Name,
		"EndPointType":    int(spec.Type),
		"EndPointAddress": spec.Address,
	}
	if len(spec.SigningKey) > 0 {
		body["CredentialType"] = 1
		body["EncryptedEndPointCredential"] = base64.StdEncoding.EncodeToString(spec.SigningKey)
	}
	var out notificationEndPointDTO
	if err := c.create(ctx, "NotificationEndPoints", body, &out); err != nil {
		return NotificationEndPoint{}, fmt.Errorf("create notification endpoint %q: %w", spec.Name, err)
	}
	return out.endPoint(), nil
}
