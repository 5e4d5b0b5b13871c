// Package student содержит справочные данные и метрики, которые читает агент
// вовлечённости: студентов, занятия и агрегированные показатели студента
// за одно занятие (StudentSession).
//
// Пакет не владеет схемой хранилища. StudentSession записывается внешним
// конвейером измерений и здесь только читается.
//
// # Основные сущности
//
//   - Student: идентичность студента (имя, email, аватар)
//   - Class, Topic, ClassSession: расписание занятий
//   - StudentSession: четыре метрики 0-100 и число эпизодов замешательства
//   - Summary: производные показатели для списка студентов
//
// # Репозитории
//
//   - Repository: создание и чтение студентов
//   - SessionRepository: чтение StudentSession и завершённых занятий
//   - AnalyticsRepository: агрегаты для дашборда
package student
