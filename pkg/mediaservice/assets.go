package mediaservice

import (
	"context"
	"fmt"
	"strconv"
)

type assetDTO struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

func (d assetDTO) asset() Asset {
	return Asset{ID: d.ID, Name: d.Name}
}

type assetFileDTO struct {
	ID              string `json:"Id"`
	Name            string `json:"Name"`
	ParentAssetID   string `json:"ParentAssetId"`
	ContentFileSize number `json:"ContentFileSize"`
	IsPrimary       bool   `json:"IsPrimary"`
	MimeType        string `json:"MimeType"`
}

func (d assetFileDTO) file() AssetFile {
	return AssetFile{
		ID:              d.ID,
		Name:            d.Name,
		ParentAssetID:   d.ParentAssetID,
		ContentFileSize: int64(d.ContentFileSize.Value),
		IsPrimary:       d.IsPrimary,
		MimeType:        d.MimeType,
	}
}

func (c *Client) CreateAsset(ctx context.Context, name string) (Asset, error) {
	var out assetDTO
	body := map[string]any{"Name": name, "Options": 0}
	if err := c.create(ctx, "Assets", body, &out); err != nil {
		return Asset{}, fmt.Errorf("create asset %q: %w", name, err)
	}
	return out.asset(), nil
}

func (c *Client) GetAsset(ctx context.Context, id string) (Asset, error) {
	var out assetDTO
	if err := c.getOne(ctx, entityPath("Assets", id), &out); err != nil {
		return Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return out.asset(), nil
}

// DeleteAsset removes the asset and its storage container. Deleting an
// asset that is already gone succeeds.
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	if err := c.remove(ctx, entityPath("Assets", id)); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListAssetFiles(ctx context.Context, assetID string) ([]AssetFile, error) {
	var dtos []assetFileDTO
	if err := c.list(ctx, entityPath("Assets", assetID)+"/Files", "", &dtos); err != nil {
		return nil, fmt.Errorf("list files of asset %s: %w", assetID, err)
	}
	files := make([]AssetFile, 0, len(dtos))
	for _, d := range dtos {
		files = append(files, d.file())
	}
	return files, nil
}

func (c *Client) CreateAssetFile(ctx context.Context, file AssetFile) (AssetFile, error) {
	body := map[string]any{
		"IsEncrypted":   "false",
		"IsPrimary":     strconv.FormatBool(file.IsPrimary),
		"MimeType":      file.MimeType,
		"Name":          file.Name,
		"ParentAssetId": file.ParentAssetID,
	}
	var out assetFileDTO
	if err := c.create(ctx, "Files", body, &out); err != nil {
		return AssetFile{}, fmt.Errorf("create file %q: %w", file.Name, err)
	}
	return out.file(), nil
}

func (c *Client) UpdateAssetFile(ctx context.Context, file AssetFile) error {
	body := map[string]any{
		"ContentFileSize": strconv.FormatInt(file.ContentFileSize, 10),
		"IsPrimary":       file.IsPrimary,
		"MimeType":        file.MimeType,
	}
	if err := c.merge(ctx, entityPath("Files", file.ID), body); err != nil {
		return fmt.Errorf("update file %s: %w", file.ID, err)
	}
	return nil
}
