package platform

// MenuDetailsPayload 是菜单详情接口的明文请求体。
type MenuDetailsPayload struct {
	StoreID      int64 `json:"storeId"`
	StoreGroupID int64 `json:"storeGroupId"`
}

// OptionsPayload 是加料详情接口的明文请求体。
type OptionsPayload struct {
	MenuID int64 `json:"menuId"`
}

// ProductStatusPayload 切换商品状态。
type ProductStatusPayload struct {
	StoreID   int64  `json:"storeId"`
	ProductID int64  `json:"productId"`
	Status    string `json:"status"`
}

// OptionStatusPayload 启用/停用选项，方向由接口路径决定。
type OptionStatusPayload struct {
	StoreID      int64 `json:"storeId"`
	OptionItemID int64 `json:"optionItemId"`
}

type MenuDetailsResponse struct {
	Data MenuDetails `json:"data"`
}

// MenuDetails 按 header 分组的商品列表。
type MenuDetails struct {
	Headers []MenuHeader `json:"menuHeaderInfos"`
}

type MenuHeader struct {
	ID    int64      `json:"id"`
	Items []MenuItem `json:"foodMenuItemDetailsDTOs"`
}

type MenuItem struct {
	ProductID int64  `json:"productId"`
	Status    string `json:"status"`
	ID        int64  `json:"id"`
}

// OptionDetails 是加料接口的完整响应。
type OptionDetails struct {
	Data []OptionDetailsData `json:"data"`
}

type OptionDetailsData struct {
	OptionsInfo OptionsInfo `json:"optionsInfo"`
}

type OptionsInfo struct {
	Headers []OptionHeaderInfo `json:"objectOptionHeaderInfosV2"`
}

type OptionHeaderInfo struct {
	OptionHeader OptionHeader     `json:"optionHeaderDTO"`
	OwnerID      int64            `json:"ownerId"`
	Items        []OptionItemInfo `json:"objectOptionItemInfosV2"`
}

type OptionHeader struct {
	ID int64 `json:"id"`
}

type OptionItemInfo struct {
	OptionItem OptionItem `json:"optionItemDTO"`
	ID         int64      `json:"id"`
}

type OptionItem struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// ActivateResponse 是状态切换接口的回执。
// validatonErrorMessages 的拼写与平台保持一致。
type ActivateResponse struct {
	Success                 bool          `json:"success"`
	ErrorMessage            *ErrorMessage `json:"errorMessage,omitempty"`
	ValidationErrorMessages []string      `json:"validatonErrorMessages,omitempty"`
}

type ErrorMessage struct {
	ErrorCode     string `json:"errorCode"`
	ErrorTitle    string `json:"errorTitle"`
	ErrorDetail   string `json:"errorDetail"`
	IsSystemError bool   `json:"isSystemError"`
}
