package model

// User visible notification texts
const (
	MsgUnknownError       = "Неизвестная ошибка."
	MsgBadRequest         = "Неверный запрос."
	MsgUploadError        = "Ошибка загрузки файла на сервер. Код: "
	MsgThumbDoneFail      = "Ошибка создания превью. Код: "
	MsgThumbSuccess       = "Превью успешно создано"
	MsgImgDimensions      = "Не удалось получить размеры изображения"
	MsgPreloadError       = "Ошибка инициализации"
	MsgConstraintRejected = "Изображение не соответствует требованиям"
	MsgRequestTimeout     = "Превышено время ожидания ответа сервера"
)
