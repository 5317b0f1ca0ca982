package i18n

var en = map[string]string{
	"app.title": "RBAC Console",

	"nav.main":              "Main",
	"nav.projectmanagement": "Project management",
	"nav.tracking":          "Tracking",
	"nav.deliveryorder":     "Delivery orders",
	"nav.files":             "Files",
	"nav.admin":             "Admin",
	"nav.permissions":       "Permissions",
	"nav.groups":            "Group permissions",
	"nav.logout":            "Log out",

	"section.main":              "Main",
	"section.projectmanagement": "Project management",
	"section.tracking":          "Tracking",
	"section.deliveryorder":     "Delivery orders",
	"section.files":             "Files",
	"section.placeholder":       "This section is managed outside the console.",

	"admin.title": "Administration",
	"admin.intro": "Manage the permissions and groups of the installation platform.",

	"login.title":       "Sign in",
	"login.email":       "Email",
	"login.password":    "Password",
	"login.submit":      "Sign in",
	"login.invalid":     "Invalid email or password.",
	"login.unavailable": "The login service is unavailable. Try again later.",
	"login.expired":     "Your session has expired. Please sign in again.",

	"required":      "Required",
	"invalid_email": "Not a valid email address",
	"too_long":      "Too long",

	"col.no":          "No.",
	"col.id":          "ID",
	"col.name":        "Name",
	"col.resource":    "Resource",
	"col.action":      "Action",
	"col.delete":      "Delete",
	"col.description": "Description",
	"col.active":      "Active",
	"col.permissions": "Permissions",

	"list.loading": "Loading...",
	"list.empty":   "No results found.",
	"list.failed":  "Could not load the list.",

	"filter.all":    "All",
	"filter.search": "Search Name",

	"action.delete":   "Delete",
	"action.deleting": "Deleting...",
	"action.cancel":   "Cancel",
	"action.save":     "Save",
	"action.saving":   "Saving...",
	"action.close":    "Close",
	"action.back":     "Back",
	"action.export":   "Export",
	"action.confirm":  "Confirm",
	"yes":             "Yes",

	"permissions.title": "Permissions",
	"permissions.add":   "Add New Permission",
	"field.name":        "Name",
	"field.resource":    "Resource",
	"field.action":      "Action",

	"groups.title":             "Group permissions",
	"groups.create":            "Create New Group",
	"groups.create_permission": "Create New Permission",
	"groups.name":              "Group Name",
	"groups.description":       "Description",
	"groups.permissions":       "Permissions",
	"groups.choose":            "Choose Permissions",
	"groups.selected":          "Selected IDs",
	"groups.submit":            "Create Group",
	"groups.loading":           "Loading groups...",
	"groups.select_title":      "Select Permissions",
	"groups.done":              "Done",
	"groups.picker_loading":    "Loading permissions...",

	"permission.added":         "Permission added successfully!",
	"permission.add_failed":    "Failed to add permission.",
	"permission.deleted":       "Permission deleted successfully!",
	"permission.delete_failed": "Failed to delete permission.",
	"group.created":            "Group created successfully!",
	"group.create_failed":      "Failed to create group.",
	"group.deleted":            "Group deleted successfully!",
	"group.delete_failed":      "Failed to delete group.",
	"group.confirm_delete":     "Are you sure you want to delete this group?",

	"live.offline": "Connection lost. Reconnecting...",
	"lang.en":      "English",
	"lang.vi":      "Tiếng Việt",
}

var vi = map[string]string{
	"app.title": "Bảng điều khiển phân quyền",

	"nav.main":              "Trang chính",
	"nav.projectmanagement": "Quản lý dự án",
	"nav.tracking":          "Theo dõi",
	"nav.deliveryorder":     "Đơn giao hàng",
	"nav.files":             "Tệp",
	"nav.admin":             "Quản trị",
	"nav.permissions":       "Quyền",
	"nav.groups":            "Nhóm quyền",
	"nav.logout":            "Đăng xuất",

	"section.main":              "Trang chính",
	"section.projectmanagement": "Quản lý dự án",
	"section.tracking":          "Theo dõi",
	"section.deliveryorder":     "Đơn giao hàng",
	"section.files":             "Tệp",
	"section.placeholder":       "Mục này được quản lý bên ngoài bảng điều khiển.",

	"admin.title": "Quản trị",
	"admin.intro": "Quản lý quyền và nhóm quyền của nền tảng lắp đặt.",

	"login.title":       "Đăng nhập",
	"login.email":       "Email",
	"login.password":    "Mật khẩu",
	"login.submit":      "Đăng nhập",
	"login.invalid":     "Email hoặc mật khẩu không đúng.",
	"login.unavailable": "Dịch vụ đăng nhập không khả dụng. Vui lòng thử lại sau.",
	"login.expired":     "Phiên đăng nhập đã hết hạn. Vui lòng đăng nhập lại.",

	"required":      "Bắt buộc",
	"invalid_email": "Email không hợp lệ",
	"too_long":      "Quá dài",

	"col.no":          "STT",
	"col.id":          "ID",
	"col.name":        "Tên",
	"col.resource":    "Tài nguyên",
	"col.action":      "Hành động",
	"col.delete":      "Xóa",
	"col.description": "Mô tả",
	"col.active":      "Hoạt động",
	"col.permissions": "Quyền",

	"list.loading": "Đang tải...",
	"list.empty":   "Không có kết quả.",
	"list.failed":  "Không tải được danh sách.",

	"filter.all":    "Tất cả",
	"filter.search": "Tìm theo tên",

	"action.delete":   "Xóa",
	"action.deleting": "Đang xóa...",
	"action.cancel":   "Hủy",
	"action.save":     "Lưu",
	"action.saving":   "Đang lưu...",
	"action.close":    "Đóng",
	"action.back":     "Quay lại",
	"action.export":   "Xuất Excel",
	"action.confirm":  "Xác nhận",
	"yes":             "Có",

	"permissions.title": "Quyền",
	"permissions.add":   "Thêm quyền mới",
	"field.name":        "Tên",
	"field.resource":    "Tài nguyên",
	"field.action":      "Hành động",

	"groups.title":             "Nhóm quyền",
	"groups.create":            "Tạo nhóm mới",
	"groups.create_permission": "Tạo quyền mới",
	"groups.name":              "Tên nhóm",
	"groups.description":       "Mô tả",
	"groups.permissions":       "Quyền",
	"groups.choose":            "Chọn quyền",
	"groups.selected":          "ID đã chọn",
	"groups.submit":            "Tạo nhóm",
	"groups.loading":           "Đang tải nhóm...",
	"groups.select_title":      "Chọn quyền",
	"groups.done":              "Xong",
	"groups.picker_loading":    "Đang tải quyền...",

	"permission.added":         "Thêm quyền thành công!",
	"permission.add_failed":    "Thêm quyền thất bại.",
	"permission.deleted":       "Xóa quyền thành công!",
	"permission.delete_failed": "Xóa quyền thất bại.",
	"group.created":            "Tạo nhóm thành công!",
	"group.create_failed":      "Tạo nhóm thất bại.",
	"group.deleted":            "Xóa nhóm thành công!",
	"group.delete_failed":      "Xóa nhóm thất bại.",
	"group.confirm_delete":     "Bạn có chắc muốn xóa group này?",

	"live.offline": "Mất kết nối. Đang kết nối lại...",
	"lang.en":      "English",
	"lang.vi":      "Tiếng Việt",
}
