package extract

// Rule sets for the upstream asset service. Order is priority.
var (
	// CreatedID locates the id of a freshly created record
	CreatedID = Paths("result.id", "id", "data.id", "result.data.id")

	// RecordID locates the id field of a single record
	RecordID = Paths("id", "_id", "uuid", "asset_id", "assetId")

	// Records locates the record array of a list response
	Records = Paths("", "result", "data", "items", "results", "result.data", "result.items",
		"data.items", "data.data", "objects", "ar_objects", "assets", "scenes", "list")

	// Total locates the total record count of a list response
	Total = Paths("total", "count", "result.total", "data.total", "meta.total",
		"pagination.total", "result.count", "totalCount")

	// Single locates the record of a single-record response
	Single = Paths("result", "data", "")

	// Token locates a bearer token in a login response body
	Token = Paths("token", "access_token", "accessToken", "result.token", "data.token",
		"result.access_token", "data.access_token", "data.accessToken")

	// TokenHeaders are checked, in order, when the body carries no token
	TokenHeaders = []string{"Authorization", "X-Auth-Token", "X-Access-Token", "Token", "Access-Token"}
)

// Rule sets for normalizing asset and scene records
var (
	AssetType    = Paths("type", "kind", "media_type", "mediaType", "file_type", "fileType", "category")
	AssetName    = Paths("name", "title", "filename", "file_name", "original_name", "originalName")
	AssetURL     = Paths("url", "file_url", "fileUrl", "src", "download_url", "downloadUrl", "file.url", "path")
	AssetExt     = Paths("ext", "extension", "file_ext", "fileExt")
	AssetSize    = Paths("size", "file_size", "fileSize", "bytes", "file.size")
	AssetPreview = Paths("preview_url", "previewUrl", "thumbnail_url", "thumbnailUrl", "thumbnail", "thumb", "preview")
	AssetWidth   = Paths("width", "meta.width", "meta.image.width", "meta.video.width")
	AssetHeight  = Paths("height", "meta.height", "meta.image.height", "meta.video.height")
	AssetMeta    = Paths("meta", "metadata")

	SceneName        = Paths("name", "title")
	SceneDescription = Paths("description", "desc")
)
